// Package tiers holds the read-only tier catalog: which subscription levels
// exist, what they cost, how long a billing cycle lasts and how many units of
// each metered feature a user gets per cycle.
//
// The catalog ships as YAML (an embedded default or a file), is validated on
// load and never mutated afterwards. Consumers copy caps into usage counters
// at reset time instead of holding references to the catalog.
//
//	catalog := tiers.Default()
//	pro, err := catalog.Get("pro")
//	if errors.Is(err, tiers.ErrUnknownTier) {
//		...
//	}
//	fmt.Println(pro.DisplayPrice(), pro.Cap(tiers.JobAnalysis))
package tiers
