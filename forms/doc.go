// Package forms holds headless form shells for the sign-in screens: field
// values, validation, submission through the session Manager and the
// message or redirect that follows. Rendering is left to the host.
//
// Field validation uses ozzo-validation. Validation errors are keyed by the
// field's json tag.
package forms
