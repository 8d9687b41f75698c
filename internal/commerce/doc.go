// Package commerce holds the document types shared by carts, orders, shops,
// catalog records and accounts. The same structs are persisted to MongoDB
// (bson tags) and to Postgres JSONB columns (json tags).
package commerce
