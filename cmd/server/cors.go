package main

import (
	"net/http"

	"github.com/rs/cors"
)

// corsOptions allows credentials only for an explicit origin list. An empty
// list or a "*" entry means any origin without credentials.
func corsOptions(origins []string) cors.Options {
	credentials := len(origins) > 0
	for _, o := range origins {
		if o == "*" {
			credentials = false
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: credentials,
	}
}
