package jwttoken

import (
	authmw "trustline/internal/platform/middleware"
)

// ServiceAdapter bridges the token service to the middleware's validator
// interface.
type ServiceAdapter struct {
	service *Service
}

func NewServiceAdapter(service *Service) *ServiceAdapter {
	return &ServiceAdapter{service: service}
}

func (a *ServiceAdapter) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{Address: claims.Subject}, nil
}
