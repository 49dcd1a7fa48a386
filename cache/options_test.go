package cache

import (
	"errors"
	"testing"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.PodID == "" {
		t.Fatal("PodID should not be empty")
	}
	if opts.InvalidationChannel == "" {
		t.Fatal("InvalidationChannel should not be empty")
	}
	if opts.SerializationFormat != "json" {
		t.Fatalf("Expected json, got %s", opts.SerializationFormat)
	}
	if opts.ContextTimeout == 0 {
		t.Fatal("ContextTimeout should not be zero")
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
		valid  bool
	}{
		{"Valid options", func(o *Options) {}, true},
		{"Empty PodID", func(o *Options) { o.PodID = "" }, false},
		{"Empty InvalidationChannel", func(o *Options) { o.InvalidationChannel = "" }, false},
		{"Unsupported format", func(o *Options) { o.SerializationFormat = "xml" }, false},
		{"Zero NumCounters", func(o *Options) { o.LocalCacheConfig.NumCounters = 0 }, false},
		{"Zero MaxCost with local disabled", func(o *Options) {
			o.LocalCacheConfig.MaxCost = 0
			o.DisableLocalCache = true
		}, true},
		{"Custom factory skips ristretto limits", func(o *Options) {
			o.LocalCacheConfig = LocalCacheConfig{}
			o.LocalCacheFactory = NewLRUCacheFactory(4)
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			err := opts.Validate()
			if tt.valid && err != nil {
				t.Fatalf("Expected valid options, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
