package exportdir

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emersion/go-vcard"

	"github.com/Martian-dev/pst-migrate/internal/archive"
)

func readVCards(path string) ([]archive.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var items []archive.Item
	dec := vcard.NewDecoder(f)
	for {
		card, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode vcard: %w", err)
		}
		items = append(items, cardToContact(card))
	}
	return items, nil
}

func cardToContact(card vcard.Card) *archive.Contact {
	c := &archive.Contact{
		DisplayName:      card.PreferredValue(vcard.FieldFormattedName),
		Email:            card.PreferredValue(vcard.FieldEmail),
		BusinessHomePage: card.PreferredValue(vcard.FieldURL),
		Notes:            card.PreferredValue(vcard.FieldNote),
	}
	if n := card.Name(); n != nil {
		c.GivenName = n.GivenName
		c.Surname = n.FamilyName
	}
	c.EmailDisplayName = c.DisplayName

	for _, tel := range card[vcard.FieldTelephone] {
		for _, typ := range tel.Params.Types() {
			switch strings.ToLower(typ) {
			case vcard.TypeHome:
				if c.HomePhone == "" {
					c.HomePhone = tel.Value
				}
			case vcard.TypeWork:
				if c.BusinessPhone == "" {
					c.BusinessPhone = tel.Value
				}
			case vcard.TypeCell:
				if c.MobilePhone == "" {
					c.MobilePhone = tel.Value
				}
			}
		}
	}
	return c
}
