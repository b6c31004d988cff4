package htbolt

import "time"

// timeNow returns the current time. It can be overridden in tests.
var timeNow = time.Now
