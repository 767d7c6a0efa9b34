package enums

// ReviewTargetType is what a review is attached to.
type ReviewTargetType string

const (
	ReviewTargetListing ReviewTargetType = "listing"
	ReviewTargetFarmer  ReviewTargetType = "farmer"
)

var validReviewTargetTypes = []ReviewTargetType{
	ReviewTargetListing,
	ReviewTargetFarmer,
}

func (v ReviewTargetType) String() string { return string(v) }

func (v ReviewTargetType) IsValid() bool { return member(validReviewTargetTypes, v) }

func ParseReviewTargetType(value string) (ReviewTargetType, error) {
	return parse("review target type", validReviewTargetTypes, value)
}
