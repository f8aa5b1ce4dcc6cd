package entities

import "errors"

// Lookup errors shared by the repositories and their callers.
var (
	ErrBookNotFound      = errors.New("book not found")
	ErrChapterNotFound   = errors.New("chapter not found")
	ErrLineAudioMissing  = errors.New("line audio missing")
	ErrAudioNotGenerated = errors.New("audio not generated")
)
