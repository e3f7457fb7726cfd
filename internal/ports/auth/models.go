package auth

// Role del profesional dentro del tenant, según el token.
type Role string

const (
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
)

// Claims representa la identidad ya verificada por la capa de autenticación:
// (tenantId, professionalId, role). El motor confía en estos valores
// y no vuelve a verificar credenciales.
type Claims struct {
	ProfessionalID string
	Email          string
	TenantID       string
	Role           Role
}
