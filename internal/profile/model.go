// Package profile maintains the client's best-effort view of member
// profiles: the authenticated user's merged profile, a TTL cache of
// peer profiles, and the profile mode selection.
package profile

import "strings"

// Placeholder values used for any field the backend document does not
// provide. A merged Profile never carries an empty field.
const (
	DefaultDisplayName  = "New Member"
	DefaultEmail        = "unknown@kindra.app"
	DefaultAge          = 0
	DefaultLocation     = "Somewhere on Earth"
	DefaultRelationship = "Prefer not to say"
	DefaultGender       = "Prefer not to say"
	DefaultAbout        = "This member has not written anything about themselves yet."
	DefaultProfileImg   = "https://static.kindra.app/img/default-avatar.png"
)

// Profile is the merged, fully-resolved view consumed by every page.
// It is replaced wholesale on each successful fetch, never patched
// field by field.
type Profile struct {
	ID           string
	DisplayName  string
	Email        string
	Age          int
	Location     string
	Relationship string
	Gender       string
	About        string
	ProfileImg   string
}

// Default returns the placeholder Profile shown before any fetch
// succeeds
func Default() Profile {
	return Profile{
		DisplayName:  DefaultDisplayName,
		Email:        DefaultEmail,
		Age:          DefaultAge,
		Location:     DefaultLocation,
		Relationship: DefaultRelationship,
		Gender:       DefaultGender,
		About:        DefaultAbout,
		ProfileImg:   DefaultProfileImg,
	}
}

// UserDocument is the backend's full user document. Every nested
// section is optional; the merge must not assume any field's presence.
type UserDocument struct {
	ID                    string            `json:"id"`
	Email                 string            `json:"email"`
	PersonalInfo          *PersonalInfo     `json:"personal_info"`
	ProfilePictures       []ProfilePicture  `json:"profile_pictures"`
	PersonalFreeForm      *PersonalFreeForm `json:"personal_free_form"`
	ValuesBeliefsAndGoals *ValuesBeliefs    `json:"values_beliefs_and_goals"`
}

type PersonalInfo struct {
	FirstName          string `json:"first_name"`
	MiddleName         string `json:"middle_name"`
	LastName           string `json:"last_name"`
	Nickname           string `json:"nickname"`
	Age                int    `json:"age"`
	Location           string `json:"location"`
	RelationshipStatus string `json:"relationship_status"`
	Gender             string `json:"gender"`
}

type ProfilePicture struct {
	URL string `json:"url"`
}

type PersonalFreeForm struct {
	ThingsToShare string `json:"things_to_share"`
}

type ValuesBeliefs struct {
	Beliefs string `json:"beliefs"`
}

// Merge resolves a backend document into a complete Profile, falling
// back to the placeholder for every missing field.
func Merge(doc UserDocument) Profile {
	p := Default()

	if doc.ID != "" {
		p.ID = doc.ID
	}
	if doc.Email != "" {
		p.Email = doc.Email
	}

	if info := doc.PersonalInfo; info != nil {
		if name := displayName(info, doc.Email); name != "" {
			p.DisplayName = name
		}
		if info.Age > 0 {
			p.Age = info.Age
		}
		if info.Location != "" {
			p.Location = info.Location
		}
		if info.RelationshipStatus != "" {
			p.Relationship = info.RelationshipStatus
		}
		if info.Gender != "" {
			p.Gender = info.Gender
		}
	} else if doc.Email != "" {
		if name := emailLocalPart(doc.Email); name != "" {
			p.DisplayName = name
		}
	}

	if len(doc.ProfilePictures) > 0 && doc.ProfilePictures[0].URL != "" {
		p.ProfileImg = doc.ProfilePictures[0].URL
	}

	if ff := doc.PersonalFreeForm; ff != nil && ff.ThingsToShare != "" {
		p.About = ff.ThingsToShare
	} else if vb := doc.ValuesBeliefsAndGoals; vb != nil && vb.Beliefs != "" {
		p.About = vb.Beliefs
	}

	return p
}

// displayName joins the three name parts, then falls back to nickname,
// then to the email local part.
func displayName(info *PersonalInfo, email string) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{info.FirstName, info.MiddleName, info.LastName} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if info.Nickname != "" {
		return info.Nickname
	}
	return emailLocalPart(email)
}

func emailLocalPart(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return ""
}
