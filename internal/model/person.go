package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ChuLiYu/labqueue/pkg/types"
	"golang.org/x/crypto/bcrypt"
)

var (
	phoneRegex = regexp.MustCompile(`^[0-9]{3,}$`)
	emailRegex = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9-]+(\.[A-Za-z0-9-]+)*$`)
)

// Person is a lab user who owns jobs. Persons are unique by name.
type Person struct {
	Name    types.PersonName
	Phone   string
	Email   string
	Address string
	Tags    types.TagSet
}

// NewPerson validates every field.
func NewPerson(name, phone, email, address string, tags []string) (Person, error) {
	n, err := types.NewPersonName(name)
	if err != nil {
		return Person{}, err
	}
	if !phoneRegex.MatchString(phone) {
		return Person{}, types.Errorf(types.ErrInvalidFormat, "phone %q should only contain numbers, at least 3 digits long", phone)
	}
	if !emailRegex.MatchString(email) {
		return Person{}, types.Errorf(types.ErrInvalidFormat, "email %q should be of the form local-part@domain", email)
	}
	if strings.TrimSpace(address) == "" {
		return Person{}, types.Errorf(types.ErrInvalidFormat, "address should not be blank")
	}
	ts, err := types.ParseTags(tags)
	if err != nil {
		return Person{}, err
	}
	return Person{Name: n, Phone: phone, Email: email, Address: address, Tags: ts}, nil
}

// IsSamePerson is the weak identity used for uniqueness.
func (p Person) IsSamePerson(o Person) bool {
	return p.Name == o.Name
}

func (p Person) Equal(o Person) bool {
	return p.Name == o.Name && p.Phone == o.Phone && p.Email == o.Email &&
		p.Address == o.Address && p.Tags.Equal(o.Tags)
}

func (p Person) String() string {
	return fmt.Sprintf("%s Phone: %s Email: %s Address: %s Tags: %s", p.Name, p.Phone, p.Email, p.Address, p.Tags)
}

// ============================================================================
// Admin
// ============================================================================

// HashCost is the bcrypt cost used for new admin passwords.
var HashCost = bcrypt.DefaultCost

// Admin can manage machines. Only a bcrypt hash of the password is kept.
type Admin struct {
	Username     types.Username
	PasswordHash string
}

// NewAdmin hashes password.
func NewAdmin(username, password string) (Admin, error) {
	u, err := types.NewUsername(username)
	if err != nil {
		return Admin{}, err
	}
	if len(password) < 6 || len(password) > 72 {
		return Admin{}, types.Errorf(types.ErrInvalidFormat, "password should be between 6 and 72 bytes long")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return Admin{}, fmt.Errorf("hash password: %w", err)
	}
	return Admin{Username: u, PasswordHash: string(hash)}, nil
}

// RestoreAdmin rebuilds an admin from a stored hash.
func RestoreAdmin(username, hash string) (Admin, error) {
	u, err := types.NewUsername(username)
	if err != nil {
		return Admin{}, err
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return Admin{}, types.Errorf(types.ErrInvalidFormat, "password hash of %q is not a bcrypt hash", username)
	}
	return Admin{Username: u, PasswordHash: hash}, nil
}

// CheckPassword reports whether password matches the stored hash.
func (a Admin) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

func (a Admin) IsSameAdmin(o Admin) bool {
	return a.Username == o.Username
}

func (a Admin) Equal(o Admin) bool {
	return a.Username == o.Username && a.PasswordHash == o.PasswordHash
}

func (a Admin) String() string {
	return a.Username.String()
}
