package main

import "context"

type Store struct{}

// Get looks a value up.
//
//trace:instrument(skip(token), err)
func (s *Store) Get(ctx context.Context, key string, token []byte) (string, error) {
	return key, nil
}

//trace:instrument(name = "store.put", level = debug, fields(size = len(value)), context = false)
func (s Store) Put(ctx context.Context, key string, value []byte) {}
