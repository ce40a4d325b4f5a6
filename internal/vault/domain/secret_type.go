package domain

// SecretType is the closed set of secret variants the vault accepts.
type SecretType string

const (
	SecretTypeAPIKey             SecretType = "api_key"
	SecretTypePassword           SecretType = "password"
	SecretTypeToken              SecretType = "token"
	SecretTypeCertificate        SecretType = "certificate"
	SecretTypeSSHKey             SecretType = "ssh_key"
	SecretTypeDatabaseCredential SecretType = "database_credential"
	SecretTypeGeneric            SecretType = "generic"
)

// SecretTypes lists every valid SecretType.
var SecretTypes = []SecretType{
	SecretTypeAPIKey,
	SecretTypePassword,
	SecretTypeToken,
	SecretTypeCertificate,
	SecretTypeSSHKey,
	SecretTypeDatabaseCredential,
	SecretTypeGeneric,
}

// IsValid reports whether t is one of SecretTypes.
func (t SecretType) IsValid() bool {
	for _, v := range SecretTypes {
		if v == t {
			return true
		}
	}
	return false
}

// RequiresProvider reports whether secrets of this type must name a provider.
func (t SecretType) RequiresProvider() bool {
	return t == SecretTypeAPIKey
}

// RequiresPEM reports whether values of this type must be PEM encoded.
func (t SecretType) RequiresPEM() bool {
	return t == SecretTypeCertificate || t == SecretTypeSSHKey
}
