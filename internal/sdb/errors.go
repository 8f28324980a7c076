package sdb

import "errors"

// ErrConflict is returned by an upload when the remote revision no longer
// matches the one observed at download time. The remote copy is untouched;
// recovery requires a fresh download. Never retried automatically.
var ErrConflict = errors.New("remote store changed since last download")

// ErrBusy is returned when the in-process writer gate could not be entered
// within its wait bound. Distinct from ErrConflict: the caller may simply
// retry later.
var ErrBusy = errors.New("writer gate busy: timed out waiting for exclusive access")
