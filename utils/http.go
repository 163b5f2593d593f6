package utils

import (
	"net/http"
	"time"
)

// HTTPClient is the shared client for calls to the profile service.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}
