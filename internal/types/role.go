package types

type Role string

const (
	RoleParticipant Role = "participant"
	RoleCoordinator Role = "coordinator"
	RoleJudge       Role = "judge"
	RoleAdmin       Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleParticipant, RoleCoordinator, RoleJudge, RoleAdmin:
		return true
	default:
		return false
	}
}

type University string

const (
	UniversityUST     University = "UST"
	UniversityIAUE    University = "IAUE"
	UniversityUNIPORT University = "UNIPORT"
)

var Universities = []University{UniversityUST, UniversityIAUE, UniversityUNIPORT}

func (u University) Valid() bool {
	for _, v := range Universities {
		if u == v {
			return true
		}
	}
	return false
}

type ParticipationType string

const (
	ParticipationTypeIndividual ParticipationType = "individual"
	ParticipationTypeTeam       ParticipationType = "team"
)

// The signed in principal
type Me struct {
	University *University `json:"university"`
	ID         string      `json:"id"         format:"uuid"`
	Email      string      `json:"email"`
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`
	Role       Role        `json:"role"`
}
