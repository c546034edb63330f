package admission

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/dc-tec/wrongsecrets-balancer/internal/config"
	operatorerrors "github.com/dc-tec/wrongsecrets-balancer/internal/errors"
	"github.com/dc-tec/wrongsecrets-balancer/internal/team"
)

const (
	hmacKey        = "hardcodedkey"
	knownPasscode  = "ABCD1234"
	adminPassword  = "hunter2hunter2"
	accessPassword = "letmein"
)

func hashOf(passcode string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.MinCost)
	Expect(err).NotTo(HaveOccurred())
	return string(hash)
}

var _ = Describe("Join", func() {
	var (
		ctx       context.Context
		instances *fakeInstances
		opts      Options
	)

	controller := func() *Controller {
		return New(instances, logr.Discard(), opts)
	}

	newTeam := func(name string) JoinRequest {
		return JoinRequest{Team: name, HMAC: ComputeHMAC(hmacKey, name)}
	}

	BeforeEach(func() {
		ctx = context.Background()
		instances = newFakeInstances()
		opts = Options{
			Admin:        config.Admin{Username: "admin", Password: adminPassword},
			HMACKey:      hmacKey,
			MaxInstances: 10,
			Cost:         bcrypt.MinCost,
		}
	})

	Context("as the admin", func() {
		It("logs in with the admin password without provisioning", func() {
			result, err := controller().Join(ctx, JoinRequest{Team: "admin", Passcode: adminPassword})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(OutcomeAdmin))
			Expect(instances.gets).To(BeZero())
			Expect(instances.createCalls()).To(BeEmpty())
		})

		It("rejects a wrong admin password", func() {
			_, err := controller().Join(ctx, JoinRequest{Team: "admin", Passcode: "wrong"})

			Expect(err).To(MatchError(operatorerrors.ErrUnauthorized))
			Expect(instances.createCalls()).To(BeEmpty())
		})

		It("rejects every login when no admin password is configured", func() {
			opts.Admin.Password = ""

			_, err := controller().Join(ctx, JoinRequest{Team: "admin"})

			Expect(err).To(MatchError(operatorerrors.ErrUnauthorized))
		})
	})

	Context("when the team exists", func() {
		BeforeEach(func() {
			instances.records["blue"] = team.InstanceRecord{Team: "blue", PasscodeHash: hashOf(knownPasscode)}
		})

		It("joins with the right passcode", func() {
			result, err := controller().Join(ctx, JoinRequest{Team: "blue", Passcode: knownPasscode})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(OutcomeJoined))
			Expect(result.Passcode).To(BeEmpty())
			Expect(instances.createCalls()).To(BeEmpty())
		})

		DescribeTable("rejects bad passcodes",
			func(passcode string) {
				_, err := controller().Join(ctx, JoinRequest{Team: "blue", Passcode: passcode})

				Expect(err).To(MatchError(operatorerrors.ErrUnauthorized))
				Expect(instances.createCalls()).To(BeEmpty())
				Expect(instances.counts).To(BeZero())
			},
			Entry("wrong", "DEADBEEF"),
			Entry("lowercase", "abcd1234"),
			Entry("missing", ""),
		)
	})

	Context("when the lookup fails with something other than NotFound", func() {
		It("surfaces the error and never creates", func() {
			instances.getErr = fmt.Errorf("get deployment: %w", operatorerrors.ErrUnavailable)

			_, err := controller().Join(ctx, newTeam("blue"))

			Expect(err).To(MatchError(operatorerrors.ErrUnavailable))
			Expect(err).NotTo(MatchError(operatorerrors.ErrNotFound))
			Expect(instances.counts).To(BeZero())
			Expect(instances.createCalls()).To(BeEmpty())
		})
	})

	Context("when the team does not exist", func() {
		It("creates the team and returns the passcode once", func() {
			opts.Random = bytes.NewReader([]byte{0xca, 0xfe, 0xba, 0xbe})

			result, err := controller().Join(ctx, newTeam("blue"))

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(OutcomeCreated))
			Expect(result.Passcode).To(Equal("CAFEBABE"))
			Expect(result.Pipeline).NotTo(BeNil())
			Expect(instances.createCalls()).To(Equal([]string{"blue"}))

			stored := instances.records["blue"].PasscodeHash
			Expect(stored).NotTo(Equal(result.Passcode))
			Expect(VerifyPasscode(stored, result.Passcode)).To(BeTrue())
		})

		It("lets the creator join afterwards with the returned passcode", func() {
			c := controller()
			created, err := c.Join(ctx, newTeam("blue"))
			Expect(err).NotTo(HaveOccurred())

			joined, err := c.Join(ctx, JoinRequest{Team: "blue", Passcode: created.Passcode})

			Expect(err).NotTo(HaveOccurred())
			Expect(joined.Outcome).To(Equal(OutcomeJoined))
			Expect(instances.createCalls()).To(HaveLen(1))
		})

		It("rejects an invalid team name before any lookup", func() {
			_, err := controller().Join(ctx, newTeam("Not_Valid"))

			Expect(err).To(MatchError(operatorerrors.ErrInvalidTeamName))
			Expect(instances.gets).To(BeZero())
		})

		It("reports an incomplete pipeline", func() {
			instances.createErr = fmt.Errorf("%w for team blue", operatorerrors.ErrProvisioningIncomplete)

			result, err := controller().Join(ctx, newTeam("blue"))

			Expect(err).To(MatchError(operatorerrors.ErrProvisioningIncomplete))
			Expect(result.Pipeline).NotTo(BeNil())
			Expect(result.Passcode).To(BeEmpty())
		})
	})

	Context("capacity", func() {
		It("rejects a new team when the cap is reached", func() {
			opts.MaxInstances = 3
			instances.count = 3

			_, err := controller().Join(ctx, newTeam("blue"))

			Expect(err).To(MatchError(operatorerrors.ErrCapacityExceeded))
			Expect(instances.createCalls()).To(BeEmpty())
		})

		It("admits below the cap", func() {
			opts.MaxInstances = 3
			instances.count = 2

			_, err := controller().Join(ctx, newTeam("blue"))

			Expect(err).NotTo(HaveOccurred())
		})

		It("does not count when uncapped", func() {
			opts.MaxInstances = -1
			instances.count = 500

			result, err := controller().Join(ctx, newTeam("blue"))

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(OutcomeCreated))
			Expect(instances.counts).To(BeZero())
		})

		It("admits when the count fails", func() {
			instances.countErr = operatorerrors.ErrUnavailable

			_, err := controller().Join(ctx, newTeam("blue"))

			Expect(err).NotTo(HaveOccurred())
			Expect(instances.createCalls()).To(Equal([]string{"blue"}))
		})

		It("still lets existing teams join at capacity", func() {
			opts.MaxInstances = 1
			instances.count = 1
			instances.records["blue"] = team.InstanceRecord{Team: "blue", PasscodeHash: hashOf(knownPasscode)}

			result, err := controller().Join(ctx, JoinRequest{Team: "blue", Passcode: knownPasscode})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(OutcomeJoined))
		})
	})

	Context("gates", func() {
		It("rejects a wrong access password", func() {
			opts.AccessPassword = accessPassword
			req := newTeam("blue")
			req.Password = "guess"

			_, err := controller().Join(ctx, req)

			Expect(err).To(MatchError(operatorerrors.ErrInvalidAccessPassword))
			Expect(instances.createCalls()).To(BeEmpty())
		})

		It("accepts the right access password", func() {
			opts.AccessPassword = accessPassword
			req := newTeam("blue")
			req.Password = accessPassword

			_, err := controller().Join(ctx, req)

			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects a bad hmac even with a well formed passcode", func() {
			req := JoinRequest{Team: "blue", Passcode: knownPasscode, HMAC: ComputeHMAC(hmacKey, "green")}

			_, err := controller().Join(ctx, req)

			Expect(err).To(MatchError(operatorerrors.ErrInvalidHMAC))
			Expect(instances.createCalls()).To(BeEmpty())
		})

		It("checks capacity before the hmac", func() {
			opts.MaxInstances = 0

			_, err := controller().Join(ctx, JoinRequest{Team: "blue"})

			Expect(err).To(MatchError(operatorerrors.ErrCapacityExceeded))
		})
	})

	Context("when a concurrent request provisioned the team first", func() {
		BeforeEach(func() {
			instances.createErr = fmt.Errorf("team blue: %w", operatorerrors.ErrAlreadyProvisioned)
		})

		It("treats the request as a join", func() {
			instances.onCreate = func(records map[string]team.InstanceRecord) {
				records["blue"] = team.InstanceRecord{Team: "blue", PasscodeHash: hashOf(knownPasscode)}
			}
			req := newTeam("blue")
			req.Passcode = knownPasscode

			result, err := controller().Join(ctx, req)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Outcome).To(Equal(OutcomeJoined))
		})

		It("requires the winner's passcode", func() {
			instances.onCreate = func(records map[string]team.InstanceRecord) {
				records["blue"] = team.InstanceRecord{Team: "blue", PasscodeHash: hashOf(knownPasscode)}
			}

			_, err := controller().Join(ctx, newTeam("blue"))

			Expect(err).To(MatchError(operatorerrors.ErrUnauthorized))
			Expect(err).NotTo(MatchError(operatorerrors.ErrAlreadyProvisioned))
		})

		It("asks for authentication while the workload does not exist yet", func() {
			_, err := controller().Join(ctx, newTeam("blue"))

			Expect(err).To(MatchError(operatorerrors.ErrUnauthorized))
		})

		It("keeps asking for authentication on every retry of a half provisioned team", func() {
			for range 3 {
				_, err := controller().Join(ctx, newTeam("blue"))
				Expect(err).To(MatchError(operatorerrors.ErrUnauthorized))
			}
			Expect(instances.createCalls()).To(HaveLen(3))
		})
	})

	It("admits one creator when two requests race for the same team", func() {
		instances = newFakeInstances()
		c := controller()
		var creates sync.WaitGroup
		results := make([]JoinResult, 2)
		errs := make([]error, 2)
		for i := range 2 {
			creates.Add(1)
			go func() {
				defer GinkgoRecover()
				defer creates.Done()
				results[i], errs[i] = c.Join(ctx, newTeam("blue"))
			}()
		}
		creates.Wait()

		// Both may pass the lookup. A loser that sees the winner joins without a passcode.
		created := 0
		for i := range 2 {
			if errs[i] == nil && results[i].Outcome == OutcomeCreated {
				created++
			}
			if errs[i] != nil {
				Expect(errs[i]).To(MatchError(operatorerrors.ErrUnauthorized))
			}
		}
		Expect(created).To(BeNumerically(">=", 1))
	})
})

var _ = Describe("ResetPasscode", func() {
	var instances *fakeInstances

	BeforeEach(func() {
		instances = newFakeInstances()
		instances.records["blue"] = team.InstanceRecord{Team: "blue", PasscodeHash: hashOf(knownPasscode)}
	})

	controller := func() *Controller {
		return New(instances, logr.Discard(), Options{
			Admin: config.Admin{Username: "admin", Password: adminPassword},
			Cost:  bcrypt.MinCost,
		})
	}

	It("replaces the passcode", func() {
		passcode, err := controller().ResetPasscode(context.Background(), "blue")

		Expect(err).NotTo(HaveOccurred())
		Expect(passcode).To(MatchRegexp(`^[0-9A-F]{8}$`))
		Expect(VerifyPasscode(instances.resets["blue"], passcode)).To(BeTrue())
		Expect(VerifyPasscode(instances.records["blue"].PasscodeHash, knownPasscode)).To(BeFalse())
	})

	It("refuses the admin", func() {
		_, err := controller().ResetPasscode(context.Background(), "admin")

		Expect(err).To(MatchError(operatorerrors.ErrForbidden))
		Expect(instances.resets).To(BeEmpty())
	})

	It("reports a missing instance", func() {
		_, err := controller().ResetPasscode(context.Background(), "green")

		Expect(err).To(MatchError(operatorerrors.ErrNoInstance))
	})
})

var _ = Describe("OptionsFromConfig", func() {
	It("uses the production bcrypt cost in production", func() {
		cfg := config.Default()
		cfg.Production = true

		Expect(OptionsFromConfig(cfg).Cost).To(Equal(ProductionCost))
	})

	It("keeps hashing cheap outside production", func() {
		opts := OptionsFromConfig(config.Default())

		Expect(opts.Cost).To(Equal(DevelopmentCost))
		Expect(opts.HMACKey).To(Equal("hardcodedkey"))
		Expect(opts.MaxInstances).To(Equal(100))
	})
})
