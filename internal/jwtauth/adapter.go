package jwtauth

import (
	id "txgate/pkg/domain"
	authmw "txgate/pkg/platform/middleware/auth"
)

// Adapter bridges the token service to the auth middleware's validator
// interface, converting string claims into domain IDs at the boundary.
type Adapter struct {
	service *Service
}

func NewAdapter(service *Service) *Adapter {
	return &Adapter{service: service}
}

func (a *Adapter) ValidateToken(tokenString string) (*authmw.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	actorID, err := id.ParseReviewerID(claims.ActorID)
	if err != nil {
		return nil, err
	}
	return &authmw.Claims{ActorID: actorID, Admin: claims.Admin}, nil
}
