package models

import "errors"

// ErrSourceUnavailable marks a holdings, price or dividend source that could not
// be reached or parsed. It degrades the affected component and is never fatal.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrEmptyPanel is returned by consumers that cannot work on an empty panel.
var ErrEmptyPanel = errors.New("price panel is empty")
