// Package mongo connects to MongoDB with the settings of Config and exposes
// small helpers shared by the document stores.
//
//	db, err := mongo.Open(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	profiles := store.NewProfileStore(db)
//
// Healthcheck returns a ping probe for readiness endpoints. IsDuplicateKey and
// IsNoDocuments classify driver errors without importing the driver.
package mongo
