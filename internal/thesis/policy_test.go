package thesis_test

import (
	"github.com/frahmantamala/thesis-repository/internal"
	thesisDatamodel "github.com/frahmantamala/thesis-repository/internal/core/datamodel/thesis"
	"github.com/frahmantamala/thesis-repository/internal/core/role"
	"github.com/frahmantamala/thesis-repository/internal/thesis"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Thesis Policy", func() {
	var (
		author    = uuid.New()
		advisor   = uuid.New()
		coAdvisor = uuid.New()
		stranger  = uuid.New()
	)

	record := func(status thesis.Status) *thesisDatamodel.Thesis {
		return &thesisDatamodel.Thesis{AuthorID: author, AdvisorID: advisor, CoAdvisorID: &coAdvisor, Status: string(status)}
	}
	who := func(id uuid.UUID, names ...role.Name) *internal.Principal {
		return &internal.Principal{ID: id, Roles: role.NewSet(names...)}
	}

	DescribeTable("InitialStatus",
		func(roles role.Set, want thesis.Status, fails bool) {
			got, err := thesis.InitialStatus(roles)
			if fails {
				Expect(err).To(HaveOccurred())
				appErr, _ := internal.IsAppError(err)
				Expect(appErr.Code).To(Equal(internal.ErrCodeCannotCreate))
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("student", role.NewSet(role.Student), thesis.StatusPending, false),
		Entry("student who also teaches", role.NewSet(role.Student, role.Professor), thesis.StatusPending, false),
		Entry("professor", role.NewSet(role.Professor), thesis.StatusApproved, false),
		Entry("admin", role.NewSet(role.Admin), thesis.StatusApproved, false),
		Entry("no role", role.NewSet(), thesis.Status(""), true),
	)

	DescribeTable("CanUpdate and CanDelete",
		func(p *internal.Principal, status thesis.Status, allowed bool) {
			t := record(status)
			Expect(thesis.CanUpdate(p, t)).To(Equal(allowed))
			Expect(thesis.CanDelete(p, t)).To(Equal(allowed))
		},
		Entry("admin on an approved thesis", who(stranger, role.Admin), thesis.StatusApproved, true),
		Entry("advisor on a rejected thesis", who(advisor, role.Professor), thesis.StatusRejected, true),
		Entry("co-advisor", who(coAdvisor, role.Professor), thesis.StatusPending, false),
		Entry("another professor", who(stranger, role.Professor), thesis.StatusPending, false),
		Entry("author while pending", who(author, role.Student), thesis.StatusPending, true),
		Entry("author once approved", who(author, role.Student), thesis.StatusApproved, false),
		Entry("author once rejected", who(author, role.Student), thesis.StatusRejected, false),
		Entry("another student", who(stranger, role.Student), thesis.StatusPending, false),
		Entry("advisor id without the professor role", who(advisor, role.Student), thesis.StatusPending, false),
		Entry("nobody", (*internal.Principal)(nil), thesis.StatusPending, false),
	)

	Describe("ValidateUpdateData", func() {
		status := "APPROVED"

		It("rejects a status change from a student-only user", func() {
			err := thesis.ValidateUpdateData(role.NewSet(role.Student), thesis.UpdateThesisDTO{Status: &status})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Details.(internal.ValidationErrors).Errors[0].Code).To(Equal(string(internal.ErrCodeStatusNotAllowed)))
		})

		It("allows a student who also holds a privileged role", func() {
			Expect(thesis.ValidateUpdateData(role.NewSet(role.Student, role.Admin), thesis.UpdateThesisDTO{Status: &status})).To(Succeed())
		})

		It("ignores payloads without a status", func() {
			title := "New"
			Expect(thesis.ValidateUpdateData(role.NewSet(role.Student), thesis.UpdateThesisDTO{Title: &title})).To(Succeed())
		})
	})

	Describe("ParseOrderBy", func() {
		It("accepts every supported key", func() {
			for _, raw := range []string{"", "title", "-title", "author_name", "-author_name", "advisor_name", "-advisor_name", "defense_date", "-defense_date"} {
				_, err := thesis.ParseOrderBy(raw)
				Expect(err).NotTo(HaveOccurred(), raw)
			}
		})

		It("rejects anything else", func() {
			_, err := thesis.ParseOrderBy("created_at")
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(400))
		})

		It("splits direction and field", func() {
			Expect(thesis.OrderAdvisorNameDesc.Descending()).To(BeTrue())
			Expect(thesis.OrderAdvisorNameDesc.Field()).To(Equal("advisor_name"))
			Expect(thesis.OrderTitle.Descending()).To(BeFalse())
		})
	})
})
