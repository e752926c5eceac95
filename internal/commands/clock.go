package commands

import "time"

// Now returns the current time. Tests replace it for stable output.
var Now = func() time.Time { return time.Now().UTC().Truncate(time.Second) }
