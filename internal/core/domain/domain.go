package domain

// Domain identifies a category of entity with its own offline queue and
// remote endpoint.
type Domain string

const (
	DomainPatient         Domain = "patients"
	DomainDiagnosis       Domain = "diagnoses"
	DomainTreatment       Domain = "treatments"
	DomainTreatmentUpdate Domain = "treatment-updates"
	DomainFollowUp        Domain = "follow-ups"
	DomainReview          Domain = "reviews"
	DomainUserUpdate      Domain = "user-updates"
)

// SyncOrder is the fixed order in which a full sync pass drains the queues.
var SyncOrder = []Domain{
	DomainPatient,
	DomainDiagnosis,
	DomainTreatment,
	DomainTreatmentUpdate,
	DomainFollowUp,
	DomainReview,
	DomainUserUpdate,
}

// DomainEndpoints maps each domain to its remote upload path.
var DomainEndpoints = map[Domain]string{
	DomainPatient:         "/api/v1/patients/sync",
	DomainDiagnosis:       "/api/v1/diagnoses/sync",
	DomainTreatment:       "/api/v1/treatments/sync",
	DomainTreatmentUpdate: "/api/v1/treatments/updates/sync",
	DomainFollowUp:        "/api/v1/follow-ups/sync",
	DomainReview:          "/api/v1/reviews/sync",
	DomainUserUpdate:      "/api/v1/users/profile/sync",
}

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	_, ok := DomainEndpoints[d]
	return ok
}

// Endpoint returns the remote upload path for the domain, or "" for an
// unknown domain.
func (d Domain) Endpoint() string {
	return DomainEndpoints[d]
}

func (d Domain) String() string {
	return string(d)
}
