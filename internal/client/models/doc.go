// Package models mirrors the hosted store's tables as typed records.
//
// Every record carries `json` tags matching the backend column names and
// `validate` tags checked by Validate when rows cross the store boundary or
// when user input is turned into a write.
package models
