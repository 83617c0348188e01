package domain

// Role of the authenticated caller, taken from the identity token.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleChef     Role = "chef"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
	// RoleSystem is used for upstream synchronization, never issued to clients.
	RoleSystem Role = "system"
)

type Caller struct {
	Subject string
	Role    Role
}

// CanTarget reports whether the role may request target.
// Delivery-owned statuses are read-only inputs for chefs and customers.
func (r Role) CanTarget(target Status) bool {
	if !target.IsDeliveryOwned() {
		return true
	}
	switch r {
	case RoleDriver, RoleAdmin, RoleSystem:
		return true
	default:
		return false
	}
}

// IsPartyTo reports whether the caller is the customer, chef or driver named on
// sub. Admin and system callers are parties to every subscription.
func (c Caller) IsPartyTo(sub *Subscription) bool {
	if sub == nil || c.Subject == "" {
		return false
	}
	switch c.Role {
	case RoleAdmin, RoleSystem:
		return true
	case RoleCustomer:
		return c.Subject == sub.CustomerID
	case RoleChef:
		return c.Subject == sub.ChefID
	case RoleDriver:
		return c.Subject == sub.DriverID
	default:
		return false
	}
}
