package service

import (
	"fmt"
	"os"

	"github.com/agentebl/multibanco-agent-go/internal/domain"

	"gopkg.in/yaml.v3"
)

// MockBook is the fixed identity table served in mock mode.
type MockBook struct {
	People     map[string]domain.Identity         `yaml:"people"`
	Businesses map[string]domain.BusinessIdentity `yaml:"businesses"`
}

// DemoBusiness is returned for any well-formed RUC missing from the book.
var DemoBusiness = domain.BusinessIdentity{
	LegalName: "EMPRESA DEMO S.A.C.",
	Status:    "ACTIVO",
	Condition: "HABIDO",
	Address:   "Av. Principal 123, Puerto Maldonado",
}

// DefaultMockBook returns the built-in demo identities.
func DefaultMockBook() *MockBook {
	return &MockBook{
		People: map[string]domain.Identity{
			"72951012": {FirstNames: "MANUEL ALEXANDER", PaternalSurname: "BERMEJO", MaternalSurname: "LOPEZ"},
			"00000001": {FirstNames: "JUAN", PaternalSurname: "PEREZ", MaternalSurname: "GARCIA"},
			"00000002": {FirstNames: "MARIA", PaternalSurname: "GOMEZ", MaternalSurname: "ROJAS"},
		},
		Businesses: map[string]domain.BusinessIdentity{},
	}
}

// LoadMockBook reads a YAML mock book:
//
//	people:
//	  "72951012": {nombres: MANUEL ALEXANDER, apellidoPaterno: BERMEJO, apellidoMaterno: LOPEZ}
//	businesses:
//	  "20123456789": {razonSocial: EMPRESA DEMO S.A.C., estado: ACTIVO}
//
// An empty path returns DefaultMockBook.
func LoadMockBook(path string) (*MockBook, error) {
	if path == "" {
		return DefaultMockBook(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mock book: %w", err)
	}

	var book MockBook
	if err := yaml.Unmarshal(raw, &book); err != nil {
		return nil, fmt.Errorf("parse mock book %s: %w", path, err)
	}
	if book.People == nil {
		book.People = map[string]domain.Identity{}
	}
	if book.Businesses == nil {
		book.Businesses = map[string]domain.BusinessIdentity{}
	}
	for id := range book.People {
		if !domain.IsDNI(id) {
			return nil, &domain.ErrValidation{Field: "people." + id, Message: "DNI must have 8 digits"}
		}
	}
	return &book, nil
}

// person returns the canonical identity for dni, if listed.
func (b *MockBook) person(dni string) (*domain.Identity, bool) {
	p, ok := b.People[dni]
	if !ok {
		return nil, false
	}
	p.ID = dni
	if p.FullName == "" {
		p.FullName = domain.JoinName(p.PaternalSurname, p.MaternalSurname, p.FirstNames)
	}
	return &p, true
}

// business returns the listed business for ruc, or the demo company.
func (b *MockBook) business(ruc string) *domain.BusinessIdentity {
	biz, ok := b.Businesses[ruc]
	if !ok {
		biz = DemoBusiness
	}
	biz.ID = ruc
	return &biz
}
