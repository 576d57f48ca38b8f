package models

// RoomOffer is one room/rate offering returned by the conversational query.
type RoomOffer struct {
	RoomTypeID    string  `json:"roomTypeId"`
	RoomType      string  `json:"roomType"`
	BedType       string  `json:"bedType"`
	PricePerNight float64 `json:"pricePerNight"`
	OrderAmount   float64 `json:"orderAmount,omitempty"`
	RatePlanID    string  `json:"ratePlanID,omitempty"`
	Images        string  `json:"images,omitempty"`
	Available     bool    `json:"available"`
	Hotel         Hotel   `json:"hotel"`
}

type Hotel struct {
	HotelID   string `json:"hotelID"`
	HotelName string `json:"hotelName"`
	Address   string `json:"address"`
	Price     string `json:"price,omitempty"`
	Rating    any    `json:"rating,omitempty"`
}

// HotelResults is either a plain summary or a summary plus offers.
type HotelResults struct {
	Summary       string      `json:"summary"`
	Offers        []RoomOffer `json:"offers,omitempty"`
	CheckInDate   string      `json:"checkInDate,omitempty"`
	CheckOutDate  string      `json:"checkOutDate,omitempty"`
	ContactName   string      `json:"contactName,omitempty"`
	ContactMobile string      `json:"contactMobile,omitempty"`
	GuestNames    []string    `json:"guestNames,omitempty"`
	RoomNum       int         `json:"roomNum,omitempty"`
}

func (r HotelResults) HasOffers() bool { return len(r.Offers) > 0 }
