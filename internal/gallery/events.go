package gallery

import (
	"context"
	"time"
)

// EventKind names a mutation of the gallery.
type EventKind string

const (
	EventImageUploaded EventKind = "image.uploaded"
	EventImageDeleted  EventKind = "image.deleted"
	EventFolderCreated EventKind = "folder.created"
	EventFolderDeleted EventKind = "folder.deleted"
)

// Event describes a completed mutation.
type Event struct {
	Kind EventKind
	// Key is set for image events.
	Key string
	// Path is the folder path relative to the root, if any.
	Path string
	// Count is the number of objects removed by a folder deletion.
	Count int
	// Failed is the number of objects a folder deletion could not remove.
	Failed int
	Time   time.Time
}

// Observer receives events. Notify runs on the goroutine that performed the
// mutation, after it finished; it must not call back into the Service.
type Observer interface {
	Notify(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }
