/*
 *     Copyright 2024 The DLHub Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package models holds the metadata builders for DLHub servables. Every
// servable kind (function, trained model, pipeline) shares the document
// core implemented here and contributes its own specialization section on
// top of it.
package models

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/google/uuid"

	"github.com/MaxTuecke/dlhub-sdk/pkg/version"
)

const (
	// Publisher is recorded in the bibliographic section of every document.
	Publisher = "DLHub"

	// UnassignedDOI is the placeholder identifier used until a real DOI is
	// minted for the servable.
	UnassignedDOI = "10.YET/UNASSIGNED"

	// DefaultVisibility is the group every servable is visible to unless the
	// owner restricts it.
	DefaultVisibility = "public"
)

// Document is the canonical nested-mapping representation of a servable.
// It is JSON-serializable by construction: values are strings, numbers,
// booleans, []any and nested Documents only.
type Document = map[string]any

// Model is implemented by every servable metadata builder.
type Model interface {
	// UUID returns the identifier of the model, or "" if none is assigned.
	UUID() string

	// AssignUUID assigns a fresh identifier to the model. It fails with
	// IdentityError if one is already assigned.
	AssignUUID() (string, error)

	// Files returns the registered file references (logical name -> path).
	Files() map[string]string

	// ToDocument produces the canonical document. When simplifyPaths is
	// true every file path in the output is reduced to its basename; the
	// live model is never mutated.
	ToDocument(simplifyPaths bool) Document
}

// Creator is one entry of the bibliographic creator list.
type Creator struct {
	Name         string
	Affiliations []string
}

// RelatedIdentifier links the servable to another resource, e.g. the paper
// that introduced the model.
type RelatedIdentifier struct {
	Identifier     string
	IdentifierType string
	RelationType   string
}

// Rights is one entry of the bibliographic rights list.
type Rights struct {
	URI    string
	Rights string
}

// Metadata is the document core shared by all servable kinds. Specializations
// embed it and extend ToDocument with their own section.
//
// The zero value is not usable, construct it with NewMetadata.
type Metadata struct {
	identifier string
	doi        string

	title           string
	creators        []Creator
	abstract        string
	publicationYear int
	relatedIDs      []RelatedIdentifier
	rights          []Rights

	name         string
	resourceType string
	domains      *hashset.Set
	visibleTo    *hashset.Set
	files        map[string]string
	requirements map[string]string
}

// NewMetadata creates an empty document core with DLHub defaults: public
// visibility, the current publication year and an interactive resource type.
func NewMetadata() Metadata {
	return Metadata{
		publicationYear: time.Now().Year(),
		resourceType:    "InteractiveResource",
		domains:         hashset.New(),
		visibleTo:       hashset.New(DefaultVisibility),
		files:           make(map[string]string),
		requirements:    make(map[string]string),
	}
}

// SetTitle sets the title of the servable.
func (m *Metadata) SetTitle(title string) *Metadata {
	m.title = title
	return m
}

// Title returns the title of the servable.
func (m *Metadata) Title() string { return m.title }

// AddCreator appends a creator ("Family, Given" convention) with optional
// affiliations.
func (m *Metadata) AddCreator(name string, affiliations ...string) *Metadata {
	m.creators = append(m.creators, Creator{Name: name, Affiliations: affiliations})
	return m
}

// SetAbstract sets the human-readable description of the servable.
func (m *Metadata) SetAbstract(abstract string) *Metadata {
	m.abstract = abstract
	return m
}

// SetPublicationYear overrides the publication year, which defaults to the
// year the model was created.
func (m *Metadata) SetPublicationYear(year int) *Metadata {
	m.publicationYear = year
	return m
}

// SetDOI records a minted DOI. Until called, documents carry the
// UnassignedDOI placeholder.
func (m *Metadata) SetDOI(doi string) *Metadata {
	m.doi = doi
	return m
}

// AddRelatedIdentifier links the servable to another resource.
func (m *Metadata) AddRelatedIdentifier(identifier, identifierType, relationType string) *Metadata {
	m.relatedIDs = append(m.relatedIDs, RelatedIdentifier{
		Identifier:     identifier,
		IdentifierType: identifierType,
		RelationType:   relationType,
	})
	return m
}

// AddRights appends a rights statement, e.g. a license name and URL.
func (m *Metadata) AddRights(uri, rights string) *Metadata {
	m.rights = append(m.rights, Rights{URI: uri, Rights: rights})
	return m
}

// SetName sets the short name of the servable. Names must not contain
// whitespace as they become path components on the service side.
func (m *Metadata) SetName(name string) *Metadata {
	m.name = name
	return m
}

// Name returns the short name of the servable.
func (m *Metadata) Name() string { return m.name }

// AddDomains tags the servable with one or more science domains, e.g.
// "materials science". Duplicates are ignored.
func (m *Metadata) AddDomains(domains ...string) *Metadata {
	for _, d := range domains {
		m.domains.Add(d)
	}
	return m
}

// SetVisibility replaces the visibility list with the given users/groups.
func (m *Metadata) SetVisibility(audience ...string) *Metadata {
	m.visibleTo = hashset.New()
	for _, a := range audience {
		m.visibleTo.Add(a)
	}
	return m
}

// AddRequirement records an exact runtime dependency version observed at
// build time, for reproducibility on the service side.
func (m *Metadata) AddRequirement(library, ver string) *Metadata {
	m.requirements[library] = ver
	return m
}

// AddFile registers a file reference under a logical name. Registering the
// same name twice with a different path fails with DuplicateReferenceError
// to prevent silent overwrites.
func (m *Metadata) AddFile(name, path string) error {
	if existing, ok := m.files[name]; ok && existing != path {
		return &DuplicateReferenceError{Name: name, Existing: existing, Proposed: path}
	}

	m.files[name] = path
	return nil
}

// AddDirectory registers every file under dir that matches one of the glob
// patterns (all files when no pattern is given). Each file is registered
// under its path relative to dir.
func (m *Metadata) AddDirectory(dir string, patterns ...string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	return filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}

		if len(patterns) > 0 {
			matched := false
			for _, pattern := range patterns {
				ok, err := doublestar.Match(pattern, filepath.ToSlash(rel))
				if err != nil {
					return fmt.Errorf("invalid pattern %q: %w", pattern, err)
				}
				if ok {
					matched = true
					break
				}
			}
			if !matched {
				return nil
			}
		}

		return m.AddFile(filepath.ToSlash(rel), path)
	})
}

// Files returns a copy of the registered file references.
func (m *Metadata) Files() map[string]string {
	files := make(map[string]string, len(m.files))
	for name, path := range m.files {
		files[name] = path
	}

	return files
}

// AssignUUID assigns a fresh random identifier. It fails with IdentityError
// when the model already has one: the identifier names the version lineage
// of the servable and must never change once published.
func (m *Metadata) AssignUUID() (string, error) {
	if m.identifier != "" {
		return "", &IdentityError{Identifier: m.identifier}
	}

	m.identifier = uuid.NewString()
	return m.identifier, nil
}

// UUID returns the identifier of the model, or "" if none is assigned.
func (m *Metadata) UUID() string { return m.identifier }

// SetResourceType overrides the bibliographic resource type tag. Each
// specialization fixes its own value, user code normally never calls this.
func (m *Metadata) SetResourceType(resourceType string) *Metadata {
	m.resourceType = resourceType
	return m
}

// ToDocument produces the datacite and dlhub sections of the canonical
// document. Specializations extend the result with their own section.
func (m *Metadata) ToDocument(simplifyPaths bool) Document {
	creators := make([]any, 0, len(m.creators))
	for _, c := range m.creators {
		affiliations := make([]any, 0, len(c.Affiliations))
		for _, a := range c.Affiliations {
			affiliations = append(affiliations, a)
		}
		creators = append(creators, Document{
			"creatorName":  c.Name,
			"affiliations": affiliations,
		})
	}

	titles := []any{}
	if m.title != "" {
		titles = append(titles, Document{"title": m.title})
	}

	descriptions := []any{}
	if m.abstract != "" {
		descriptions = append(descriptions, Document{
			"description":     m.abstract,
			"descriptionType": "Abstract",
		})
	}

	relatedIDs := make([]any, 0, len(m.relatedIDs))
	for _, r := range m.relatedIDs {
		relatedIDs = append(relatedIDs, Document{
			"relatedIdentifier":     r.Identifier,
			"relatedIdentifierType": r.IdentifierType,
			"relationType":          r.RelationType,
		})
	}

	rightsList := make([]any, 0, len(m.rights))
	for _, r := range m.rights {
		rightsList = append(rightsList, Document{
			"rightsURI": r.URI,
			"rights":    r.Rights,
		})
	}

	doi := m.doi
	if doi == "" {
		doi = UnassignedDOI
	}

	datacite := Document{
		"creators":        creators,
		"titles":          titles,
		"publisher":       Publisher,
		"publicationYear": strconv.Itoa(m.publicationYear),
		"identifier": Document{
			"identifier":     doi,
			"identifierType": "DOI",
		},
		"resourceType": Document{
			"resourceTypeGeneral": m.resourceType,
		},
		"descriptions":         descriptions,
		"fundingReferences":    []any{},
		"relatedIdentifiers":   relatedIDs,
		"alternateIdentifiers": []any{},
		"rightsList":           rightsList,
	}

	files := Document{}
	for name, path := range m.files {
		if simplifyPaths {
			// The local directory layout is meaningless once the files are
			// staged, only the basename survives.
			path = filepath.Base(path)
		}
		files[name] = path
	}

	requirements := Document{}
	for library, ver := range m.requirements {
		requirements[library] = ver
	}

	dlhub := Document{
		"version":    version.SDK,
		"domains":    sortedValues(m.domains),
		"visible_to": sortedValues(m.visibleTo),
		"name":       m.name,
		"type":       "servable",
		"files":      files,
		"dependencies": Document{
			"python": requirements,
		},
	}

	if m.identifier != "" {
		dlhub["id"] = m.identifier
	}

	return Document{
		"datacite": datacite,
		"dlhub":    dlhub,
	}
}

// ValidateState reports builder-state problems that would make the document
// fail schema validation: a missing title or name. It is a convenience for
// callers that want an early diagnostic, the schema remains authoritative.
func (m *Metadata) ValidateState() error {
	var missing []string
	if m.title == "" {
		missing = append(missing, "title")
	}
	if m.name == "" {
		missing = append(missing, "name")
	}

	if len(missing) > 0 {
		return fmt.Errorf("servable is missing required fields: %s", strings.Join(missing, ", "))
	}

	return nil
}

// sortedValues flattens a set of strings into a sorted []any so document
// output is deterministic.
func sortedValues(set *hashset.Set) []any {
	values := set.Values()
	strs := make([]string, 0, len(values))
	for _, v := range values {
		strs = append(strs, v.(string))
	}
	sort.Strings(strs)

	out := make([]any, 0, len(strs))
	for _, s := range strs {
		out = append(out, s)
	}

	return out
}
