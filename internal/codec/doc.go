// Package codec converts Messages to and from their wire text form.
//
// The wire form is a JSON object with exactly three fields:
//
//	{"eventName": "...", "headers": {"k": "v"}, "payload": "..."}
//
// Unknown fields are ignored on decode. A missing, null, or mistyped field
// fails with model.ErrDecodingFailed.
package codec
