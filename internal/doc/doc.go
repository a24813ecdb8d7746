// Package doc defines the cached record: an IETF-style document whose
// relation metadata points at other documents by id.
//
// Only the list relations (updates, updated_by, obsoletes, obsoleted_by)
// carry cache references and take part in resolution. The single-name
// relations (also_known_as, replaces, was) are informational.
//
// Ids are normalised with NameToID everywhere a name enters the package, so
// "RFC 791" and "rfc791" refer to the same document.
package doc
