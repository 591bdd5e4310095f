package dispatch

import "errors"

// errMissingDependency is returned by DispatcherBuilder.Build when a
// required dependency (channel, catalog, or transformer registry) was
// never set; Dispatcher carries no ambient state, so Build cannot
// default any of these.
var errMissingDependency = errors.New("dispatch: missing required dependency (channel, catalog, or transforms)")
