package tiers

import "errors"

var (
	ErrUnknownTier     = errors.New("unknown tier")
	ErrUnknownFeature  = errors.New("unknown feature")
	ErrInvalidCatalog  = errors.New("invalid tier catalog")
	ErrFailedToLoadCat = errors.New("failed to load tier catalog")
)
