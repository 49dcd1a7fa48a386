package marketplace

import (
	"errors"

	"github.com/huykn/course-marketplace/cache"
	"github.com/huykn/course-marketplace/pubsub"
	"github.com/huykn/course-marketplace/ratelimit"
	"github.com/huykn/course-marketplace/session"
	"github.com/huykn/course-marketplace/storage"
	"github.com/huykn/course-marketplace/store"
)

// ErrInvalidConfig is returned when the core configuration is invalid.
var ErrInvalidConfig = errors.New("invalid marketplace configuration")

// ErrNotFound is returned by repository lookups of a single unknown id.
// Batch loads never return it; a missing id resolves to nil.
var ErrNotFound = store.ErrNotFound

// ErrUnavailable is returned when Redis cannot be reached. It is retryable.
var ErrUnavailable = storage.ErrUnavailable

// ErrFlushForbidden is returned when flushing Redis outside test mode.
var ErrFlushForbidden = storage.ErrFlushForbidden

// ErrRateLimited is returned when a client has used up its window.
var ErrRateLimited = ratelimit.ErrRateLimited

// ErrCacheClosed is returned when operations are performed on a closed list cache.
var ErrCacheClosed = cache.ErrCacheClosed

// ErrUnknownList is returned when warming a list key with no registered source.
var ErrUnknownList = cache.ErrUnknownKey

// ErrPubSubClosed is returned when publishing after shutdown.
var ErrPubSubClosed = pubsub.ErrClosed

// ErrEmptySessionToken is returned when persisting a session without a token.
var ErrEmptySessionToken = session.ErrEmptyToken

// ErrNilSession is returned when persisting or issuing a nil session.
var ErrNilSession = session.ErrNilSession
