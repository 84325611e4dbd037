package stores_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rauzy/rauzy/pkg/document"
	"github.com/rauzy/rauzy/pkg/stores"
)

// ExampleNewSQLiteStore demonstrates creating and initializing a new SQLite store.
func ExampleNewSQLiteStore() {
	store, err := stores.NewSQLiteStore(stores.Config{
		Path:            ":memory:", // Use in-memory database for example
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}

	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_SaveLibrary demonstrates versioning a library.
func ExampleSQLiteStore_SaveLibrary() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	lib := document.NewLibrary()
	lib.Objects.Set("Car", document.NewObject())
	first, err := store.SaveLibrary(ctx, "vehicles", lib)
	if err != nil {
		log.Fatal(err)
	}

	lib.Objects.Set("Wheel", document.NewObject())
	second, err := store.SaveLibrary(ctx, "vehicles", lib)
	if err != nil {
		log.Fatal(err)
	}

	latest, err := store.GetLibrary(ctx, "vehicles", 0)
	if err != nil {
		log.Fatal(err)
	}
	doc, err := latest.Library()
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("v%d v%d latest=v%d classes=%v\n", first.Version, second.Version, latest.Version, doc.Objects.Keys())
	// Output: v1 v2 latest=v2 classes=[Car Wheel]
}

// ExampleSQLiteStore_SaveModel demonstrates saving a model with its library.
func ExampleSQLiteStore_SaveModel() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	lib, err := store.SaveLibrary(ctx, "vehicles", document.NewLibrary())
	if err != nil {
		log.Fatal(err)
	}

	model := document.NewObject()
	model.Library = "vehicles.json"
	snap, err := store.SaveModel(ctx, "garage", model, &lib.ID)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s %s v%d linked=%t\n", snap.Kind, snap.Name, snap.Version, *snap.LibraryID == lib.ID)
	// Output: model garage v1 linked=true
}

// ExampleSQLiteStore_AppendEvent demonstrates the audit log.
func ExampleSQLiteStore_AppendEvent() {
	store, _ := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	ctx := context.Background()
	_ = store.Init(ctx)
	_ = store.Migrate(ctx)
	defer store.Close()

	model := "garage"
	event := &stores.Event{
		Type:    "transform.completed",
		Source:  "transform",
		Model:   &model,
		Level:   stores.EventLevelInfo,
		Message: "Transform abstract completed on garage",
	}
	if err := store.AppendEvent(ctx, event); err != nil {
		log.Fatal(err)
	}

	events, err := store.ListEvents(ctx, stores.EventFilter{Model: &model}, 10, 0)
	if err != nil {
		log.Fatal(err)
	}

	for _, e := range events {
		fmt.Printf("[%s] %s\n", e.Level, e.Message)
	}
	// Output: [info] Transform abstract completed on garage
}
