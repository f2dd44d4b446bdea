package dto

// FavoriteRequest identifies who bookmarks a listing.
type FavoriteRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

// FavoriteQuery pages a user's favorites.
type FavoriteQuery struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

// FavoriteStatusResponse reports the favorite state after a toggle.
type FavoriteStatusResponse struct {
	ListingID     string `json:"listingId"`
	IsFavorite    bool   `json:"isFavorite"`
	FavoriteCount int64  `json:"favoriteCount"`
}
