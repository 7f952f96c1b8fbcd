// Command entitlements runs the plan and upgrade entitlement service.
//
//	entitlements serve              # HTTP API plus the scheduled expiry sweep
//	entitlements sweep [--stats]    # one sweep run, or pending counts
//	entitlements reconcile          # expire overdue invoices, re-apply paid ones
//	entitlements seed [-f file]     # import plan and upgrade definitions
//
// Configuration comes from the environment; see Config.
package main
