// Package coupon validates discount codes and computes discounted prices.
//
// Three coupon types exist: percentage, fixed_amount and plan_assignment (a full
// waiver that also names the plan and variant to grant). Validate and Apply
// never write; usage is only counted by Redeem, which payment confirmation
// calls once per paid invoice.
//
//	res, err := engine.Apply(ctx, coupon.ApplyRequest{Code: "PROMO20", OriginalPrice: 50000, PlanCode: "ESMERALDA"})
//	if err != nil { ... }        // store failure
//	if !res.Success { ... }      // res.Reason tells why
//	// res.Discount == 10000, res.FinalPrice == 40000
package coupon
