package graph

import "errors"

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrLinkNotFound  = errors.New("link not found")
	ErrGroupNotFound = errors.New("group not found")
	ErrSlotOutOfRange = errors.New("slot out of range")
	ErrInvalidMode   = errors.New("invalid node mode")
)
