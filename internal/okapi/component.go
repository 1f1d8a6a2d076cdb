package okapi

// Version is set at compile time.
var Version string

// Component identifies which component of Okapi is running, e.g. in the
// Postgres application_name. The gateway command leaves it at "okapi".
var Component = "okapi"
