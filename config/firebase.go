package config

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"log"
)

// SetupFirebase initializes the Firebase app used for identity
// verification and Firestore access. Credentials come from
// GOOGLE_APPLICATION_CREDENTIALS.
func SetupFirebase() *firebase.App {
	app, err := firebase.NewApp(context.Background(), nil)
	if err != nil {
		log.Fatalln(err)
	}
	return app
}
