package models

import "github.com/garnizeh/opphub/pkg/docstore"

// The stored body never owns the id; the document key does. Accounts are
// the exception: they are keyed by email and carry their uid.

func DecodeOpportunity(d docstore.Document) (Opportunity, error) {
	var o Opportunity
	err := d.Decode(&o)
	o.ID = d.ID
	return o, err
}

func DecodeApplication(d docstore.Document) (Application, error) {
	var a Application
	err := d.Decode(&a)
	a.ID = d.ID
	return a, err
}

func DecodeSavedMark(d docstore.Document) (SavedMark, error) {
	var s SavedMark
	err := d.Decode(&s)
	if s.OpportunityID == "" {
		s.OpportunityID = d.ID
	}
	return s, err
}

func DecodeNotification(d docstore.Document) (Notification, error) {
	var n Notification
	err := d.Decode(&n)
	n.ID = d.ID
	return n, err
}

func DecodeProfile(d docstore.Document) (UserProfile, error) {
	var p UserProfile
	err := d.Decode(&p)
	p.ID = d.ID
	if p.Skills == nil {
		p.Skills = []string{}
	}
	return p, err
}

func DecodeCategory(d docstore.Document) (Category, error) {
	var c Category
	err := d.Decode(&c)
	c.ID = d.ID
	return c, err
}

func DecodeLogEntry(d docstore.Document) (UserLogEntry, error) {
	var l UserLogEntry
	err := d.Decode(&l)
	l.ID = d.ID
	return l, err
}

func DecodeContact(d docstore.Document) (ContactMessage, error) {
	var c ContactMessage
	err := d.Decode(&c)
	c.ID = d.ID
	return c, err
}

func DecodeAccount(d docstore.Document) (Account, error) {
	var a Account
	err := d.Decode(&a)
	return a, err
}
