// Package blackice provides in-process safety gating for Go agent
// frameworks that drive a desktop or browser surface. It wraps every
// synthetic action (click, type, screenshot, element lookup) in permission,
// activity, and content gates, and exposes an emergency stop the agent
// cannot bypass.
//
// Usage:
//
//	bi, err := blackice.New(
//	    blackice.WithDisplay(surface),
//	    blackice.WithInjector(surface),
//	)
//	res := bi.Click(ctx, 500, 300)
//	if !res.Success {
//	    log.Println(res.ErrorMessage)
//	}
//
// The SDK links directly against internal packages for zero-subprocess
// overhead. External users import
// github.com/thearpankumar/Project-BlackIceOS-sub002/sdk/go/blackice.
package blackice
