// Package geo resolves server addresses and buckets them into coarse regions
// (NA, EU, APAC) using an external IP-geolocation endpoint.
package geo
