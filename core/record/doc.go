// Package record turns raw file contents into comparable records.
//
// Extractors read one file lazily and yield top-level objects as Values,
// which keep key order and number literals exactly as stored. Canonicalize
// maps every Value to one byte form so that semantically equal records hash
// to the same Digest regardless of key order, whitespace, number spelling or
// Unicode normalisation.
//
// Errors fall in three groups:
//   - *RecordError: one record was rejected, extraction continues
//   - ErrMalformedDocument: the document structure is broken, extraction stops
//   - ErrSourceRead: the byte stream failed, extraction stops
package record
