package models

import "github.com/golang-jwt/jwt/v5"

// ServiceClaims identifies a calling service on the ingest API.
type ServiceClaims struct {
	Service string `json:"svc"`
	jwt.RegisteredClaims
}
