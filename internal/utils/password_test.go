package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

// PasswordTestSuite exercises hashing and code generation
type PasswordTestSuite struct {
	suite.Suite
}

func (suite *PasswordTestSuite) TestHashPassword() {
	password := "MySecurePassword123!"

	hash, err := HashPassword(password)
	suite.NoError(err)
	suite.NotEmpty(hash)
	suite.NotEqual(password, hash)
	suite.True(strings.HasPrefix(hash, "$argon2"))
}

func (suite *PasswordTestSuite) TestHashPasswordUniqueness() {
	password := "SamePassword123"

	hash1, err1 := HashPassword(password)
	hash2, err2 := HashPassword(password)

	suite.NoError(err1)
	suite.NoError(err2)
	suite.NotEqual(hash1, hash2)
}

func (suite *PasswordTestSuite) TestVerifyPassword() {
	password := "CorrectPassword456"
	hash, _ := HashPassword(password)

	valid, err := VerifyPassword(password, hash)
	suite.NoError(err)
	suite.True(valid)

	invalid, err := VerifyPassword("WrongPassword", hash)
	suite.NoError(err)
	suite.False(invalid)

	invalidCase, err := VerifyPassword("correctpassword456", hash)
	suite.NoError(err)
	suite.False(invalidCase)
}

func (suite *PasswordTestSuite) TestVerifyPassword_MalformedHash() {
	valid, err := VerifyPassword("anything", "not-a-hash")
	suite.Error(err)
	suite.False(valid)
}

func (suite *PasswordTestSuite) TestGenerateJoinCode() {
	code, err := GenerateJoinCode(6)
	suite.NoError(err)
	suite.Len(code, 6)
	for _, c := range code {
		suite.Contains(joinCodeAlphabet, string(c))
	}
}

func (suite *PasswordTestSuite) TestGenerateJoinCode_AvoidsAmbiguousChars() {
	for i := 0; i < 20; i++ {
		code, err := GenerateJoinCode(8)
		suite.NoError(err)
		suite.NotContains(code, "0")
		suite.NotContains(code, "O")
		suite.NotContains(code, "1")
		suite.NotContains(code, "I")
		suite.NotContains(code, "L")
	}
}

func (suite *PasswordTestSuite) TestGenerateJoinCode_DefaultLength() {
	code, err := GenerateJoinCode(0)
	suite.NoError(err)
	suite.Len(code, 6)
}

func (suite *PasswordTestSuite) TestGenerateRandomString() {
	s1, err := GenerateRandomString(32)
	suite.NoError(err)
	suite.Len(s1, 32)

	s2, err := GenerateRandomString(32)
	suite.NoError(err)
	suite.NotEqual(s1, s2)
}

func TestPasswordTestSuite(t *testing.T) {
	suite.Run(t, new(PasswordTestSuite))
}
