package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frartenzo/webeep-sync/internal/config"
)

func init() {
	coursesCmd := newCoursesCmd()
	coursesCmd.AddCommand(newCoursesCmdList())
	coursesCmd.AddCommand(newCoursesCmdEnable())
	coursesCmd.AddCommand(newCoursesCmdDisable())
	coursesCmd.AddCommand(newCoursesCmdRename())
	rootCmd.AddCommand(coursesCmd)
}

func newCoursesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "courses",
		Short: "List enrolled courses and choose which ones to sync",
	}
}

func newCoursesCmdList() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List enrolled courses",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Client.Login(cmd.Context()); err != nil {
				return err
			}

			courses, err := a.Client.ListCourses(cmd.Context())
			if err != nil {
				return err
			}

			settings := a.Store.Get()
			var sb strings.Builder
			for idx, course := range courses {
				if idx > 0 {
					sb.WriteString("\n")
				}
				name := course.Name
				state := gray.Render("not synced")
				if cs := settings.Courses[course.ID]; cs != nil {
					if cs.CustomName != "" {
						name = cs.CustomName
					}
					if cs.ShouldSync {
						state = green.Render("synced")
					}
				}
				sb.WriteString(fmt.Sprintf("%s%s\n", gray.Render("ID      "), cyan.Render(strconv.FormatInt(course.ID, 10))))
				sb.WriteString(fmt.Sprintf("%s%s\n", gray.Render("Name    "), name))
				sb.WriteString(fmt.Sprintf("%s%s\n", gray.Render("Status  "), state))
			}
			fmt.Print(sb.String())
			return nil
		},
	}
}

func newCoursesCmdEnable() *cobra.Command {
	return &cobra.Command{
		Use:   "enable [COURSE_ID]",
		Short: "Flag a course for syncing",
		Args:  cobra.ExactArgs(1),
		RunE:  setCourseSync(true),
	}
}

func newCoursesCmdDisable() *cobra.Command {
	return &cobra.Command{
		Use:   "disable [COURSE_ID]",
		Short: "Stop syncing a course",
		Args:  cobra.ExactArgs(1),
		RunE:  setCourseSync(false),
	}
}

func newCoursesCmdRename() *cobra.Command {
	return &cobra.Command{
		Use:   "rename [COURSE_ID] [NAME]",
		Short: "Set a custom local folder name for a course",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			courseID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid course id %q", args[0])
			}

			a, err := newHeadlessApp()
			if err != nil {
				return err
			}
			defer a.Close()

			err = a.Store.Update(func(s *config.Settings) {
				cs, ok := s.Courses[courseID]
				if !ok {
					cs = &config.CourseSettings{}
					s.Courses[courseID] = cs
				}
				cs.CustomName = args[1]
			})
			if err != nil {
				return err
			}
			fmt.Printf("Course %s will sync into '%s'\n", cyan.Render(args[0]), green.Render(args[1]))
			return nil
		},
	}
}

func setCourseSync(enable bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		courseID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid course id %q", args[0])
		}

		a, err := newHeadlessApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Store.SetCourseSync(courseID, enable); err != nil {
			return err
		}
		if enable {
			fmt.Printf("Course %s flagged for syncing\n", green.Render(args[0]))
		} else {
			fmt.Printf("Course %s no longer synced\n", gray.Render(args[0]))
		}
		return nil
	}
}
