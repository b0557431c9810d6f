// Package enrich resolves foreign-key-like record attributes (object ids,
// group ids, user ids) into human-readable display labels.
package enrich

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/biotechnique/po-pipeline/internal/config"
	"github.com/biotechnique/po-pipeline/internal/gateway"
	"github.com/biotechnique/po-pipeline/internal/models"
)

// userAttributes are the user-picker attributes resolved through the
// user -> person chain. Array values resolve element-wise.
var userAttributes = []string{
	"cf_requisitioner",
	"cf_project_manager",
	"cf_received_by",
	"cf_accounting_personnel",
}

type objectLookup struct {
	attr     string
	objectID string // empty means a group search
}

// Enricher resolves reference attributes in place. Every lookup is
// best-effort: a miss or a directory failure leaves the original attribute
// value untouched and never fails the pipeline.
type Enricher struct {
	directory gateway.DirectoryGateway
	objects   config.ObjectIDs
}

func New(directory gateway.DirectoryGateway, objects config.ObjectIDs) *Enricher {
	return &Enricher{directory: directory, objects: objects}
}

func (e *Enricher) lookups() []objectLookup {
	return []objectLookup{
		{attr: "cf_client"},
		{attr: "cf_department_btop", objectID: e.objects.Department},
		{attr: "cf_project_psc", objectID: e.objects.Project},
		{attr: "cf_supplier_company_nam", objectID: e.objects.Supplier},
		{attr: "cf_receiving_company", objectID: e.objects.Receiving},
		{attr: "cf_bill_to_company", objectID: e.objects.BillTo},
	}
}

// Enrich resolves all configured reference attributes on the record's
// attribute map. Each lookup writes a disjoint attribute, so ordering does
// not affect the result.
func (e *Enricher) Enrich(ctx context.Context, attrs map[string]any) {
	for _, lookup := range e.lookups() {
		id := models.CoerceString(attrs[lookup.attr])
		if id == "" {
			continue
		}

		aql := fmt.Sprintf("select name from __main__ where id eq %s", id)

		var (
			match *models.Record
			err   error
		)
		if lookup.objectID == "" {
			match, err = e.directory.SearchGroup(ctx, aql)
		} else {
			match, err = e.directory.SearchObject(ctx, lookup.objectID, aql)
		}
		if err != nil {
			log.Printf("WARN: lookup for %s failed: %v", lookup.attr, err)
			continue
		}
		if name := match.StringAttr("name"); name != "" {
			attrs[lookup.attr] = name
		}
	}

	for _, attr := range userAttributes {
		value, ok := attrs[attr]
		if !ok || value == nil {
			continue
		}

		if ids, isArray := value.([]any); isArray {
			var names []string
			for _, id := range ids {
				if name := e.resolveName(ctx, models.CoerceString(id)); name != "" {
					names = append(names, name)
				}
			}
			attrs[attr] = strings.Join(names, ", ")
			continue
		}

		if name := e.resolveName(ctx, models.CoerceString(value)); name != "" {
			attrs[attr] = name
		}
	}
}

func (e *Enricher) resolveName(ctx context.Context, userID string) string {
	name, err := e.ResolveUserName(ctx, userID)
	if err != nil {
		log.Printf("WARN: failed to resolve user %s: %v", userID, err)
		return ""
	}
	return name
}

// ResolveUserName resolves a user id to "First Last" by chaining the user's
// person link. A user without a linked person falls back to the username.
func (e *Enricher) ResolveUserName(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}

	user, err := e.directory.GetUser(ctx, userID)
	if err != nil || user == nil {
		return "", err
	}

	personID := user.StringAttr("person_id")
	if personID == "" {
		return user.StringAttr("username"), nil
	}

	person, err := e.directory.GetPerson(ctx, personID)
	if err != nil || person == nil {
		return "", err
	}

	name := strings.TrimSpace(person.StringAttr("first_name") + " " + person.StringAttr("last_name"))
	return name, nil
}

// ResolveUserEmail resolves a user id to an email address, preferring the
// linked person's email over the user's own.
func (e *Enricher) ResolveUserEmail(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}

	user, err := e.directory.GetUser(ctx, userID)
	if err != nil || user == nil {
		return "", err
	}

	if personID := user.StringAttr("person_id"); personID != "" {
		person, err := e.directory.GetPerson(ctx, personID)
		if err == nil && person != nil {
			if email := person.StringAttr("email"); email != "" {
				return email, nil
			}
		}
	}

	return user.StringAttr("email"), nil
}
