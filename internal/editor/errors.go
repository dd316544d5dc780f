package editor

import "errors"

var (
	ErrSessionNotFound = errors.New("tree session not found")
	ErrRootDelete      = errors.New("the root node cannot be deleted")
	ErrUnknownBand     = errors.New("unknown band")
	ErrBranchTaken     = errors.New("branch already has a child")
	ErrQueueFull       = errors.New("command queue full")
	ErrTooManyTrees    = errors.New("too many open trees")
	ErrClosed          = errors.New("tree session closed")
	ErrTimeout         = errors.New("command timed out")
)
