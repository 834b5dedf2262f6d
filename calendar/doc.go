// Package calendar provides the calendar tools the agent can call:
// get_current_datetime, check_availability and create_event.
//
// Times arrive from the model as naive wall-clock strings. Every tool
// attaches the requested IANA timezone before talking to the backend, so the
// backend only ever sees offset-bearing timestamps with second precision.
//
// Access to Google Calendar goes through an OAuth2 token cached on disk.
// The token lifecycle is:
//
//	no token -> interactive consent -> valid
//	valid -> expired -> silent refresh -> valid
//	expired -> refresh failed -> interactive consent -> valid
//
// Consent is delegated to a Consenter; LocalServerConsent implements the
// browser flow with a loopback redirect listener.
package calendar
