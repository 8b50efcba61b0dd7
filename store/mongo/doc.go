// Package mongo implements store.Store on the official MongoDB Go driver.
// Suitable for deployments that already run MongoDB for the CRM data.
//
// The caller owns the *mongo.Database lifecycle -- this package never
// disconnects the client. Pass the database handle through the constructor:
//
//	import (
//	    mongod "go.mongodb.org/mongo-driver/v2/mongo"
//	    "go.mongodb.org/mongo-driver/v2/mongo/options"
//	    "github.com/xraph/goalpace/store/mongo"
//	)
//
//	client, _ := mongod.Connect(options.Client().ApplyURI(uri))
//	store := mongo.New(client.Database("goalpace"))
//	store.Migrate(ctx)
//
// Lock acquisition is a single UpdateOne with an upsert whose filter only
// matches a free or expired lock. When the lock is held the filter misses,
// the upsert collides with the existing _id and the duplicate key error is
// reported as a denial.
package mongo
