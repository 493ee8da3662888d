// Package validator provides composable validation rules applied at the HTTP
// boundary, so domain services never see malformed input.
//
// Rules are plain values combined with Apply:
//
//	err := validator.Apply(
//		validator.RequiredString("email", req.Email),
//		validator.ValidEmail("email", req.Email),
//		validator.MinLenString("password", req.Password, 8),
//	)
package validator
