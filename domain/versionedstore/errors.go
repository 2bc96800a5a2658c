package versionedstore

import "errors"

// Error kinds named by the versioned store. Names are conceptual, not wire
// values; wrap one of these with fmt.Errorf("...: %w", ...) for context and
// unwrap with errors.Is.
var (
	ErrNoSuchGraph               = errors.New("no such graph")
	ErrDuplicateGraph            = errors.New("graph already exists")
	ErrNoSuchNode                = errors.New("no such node at this revision")
	ErrNoSuchEdge                = errors.New("no such edge at this revision")
	ErrKeyNotSet                 = errors.New("key is tombstoned at this revision")
	ErrKeyNever                  = errors.New("key has never been set")
	ErrInvalidBranchSwitch       = errors.New("target branch starts after the current revision")
	ErrRevisionBeforeBranchStart = errors.New("revision precedes the branch's parent revision")
	ErrSchemaError               = errors.New("schema initialization failed against an incompatible database")
	ErrEncodingError             = errors.New("malformed encoded value")
	ErrStorageError              = errors.New("underlying storage failure")
)
