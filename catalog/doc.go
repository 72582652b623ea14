// Package catalog provides types and a client for package registry data.
//
// This package implements the JSON documents a pub-style registry serves
// for packages and their popularity scores. It enables:
//
//   - Type-safe access to package and release documents
//   - Cached, rate-limited fetching of registry data
//   - Popularity lookups for ranking heuristics
//
// # Registry Endpoints
//
// A registry exposes two read endpoints per package:
//
//	/api/packages/{name}        # Package document (latest + all releases)
//	/api/packages/{name}/score  # Popularity document (optional)
//
// # Usage
//
// Fetch the latest release of a package:
//
//	client := catalog.NewClient("https://pub.example.dev")
//	pkg, err := client.GetPackage(ctx, "http")
//	if err != nil {
//	    // Handle network or registry errors
//	}
//	fmt.Println(pkg.Latest.Version)
package catalog
