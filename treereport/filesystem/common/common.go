package common

// This package contains shared error kinds and run metrics used by the
// scanner, the record codec and the report renderers.
