package domain

// ServiceType enumerates the kinds of services providers can offer. The
// enumeration is closed: provider registration and request creation validate
// against it and fail with invalid input otherwise.
type ServiceType string

const (
	ServiceShelter        ServiceType = "shelter"
	ServiceMeals          ServiceType = "meals"
	ServiceCaseManagement ServiceType = "case_management"
	ServiceHealth         ServiceType = "health"
	ServiceEmployment     ServiceType = "employment"
	ServiceLegal          ServiceType = "legal"
	ServiceTransport      ServiceType = "transport"
	ServiceStorage        ServiceType = "storage"
)

// Valid reports whether t is a member of the closed service enumeration.
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceShelter, ServiceMeals, ServiceCaseManagement, ServiceHealth,
		ServiceEmployment, ServiceLegal, ServiceTransport, ServiceStorage:
		return true
	}
	return false
}

// ValidServiceTypes checks a whole slice, returning the first invalid entry.
func ValidServiceTypes(types []ServiceType) (ServiceType, bool) {
	for _, t := range types {
		if !t.Valid() {
			return t, false
		}
	}
	return "", true
}
